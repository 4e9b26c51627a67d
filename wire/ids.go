package wire

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	lcmerr "github.com/KosmosisDire/LCMware/contract/errors"
)

// MaxClientNameLength bounds the client name used as the correlation id
// prefix, so derived channel names stay within adapter addressing limits.
const MaxClientNameLength = 16

// IDSource mints correlation ids that are unique among one client's
// concurrently outstanding calls: "{name}_{counter}".
type IDSource struct {
	name string
	n    atomic.Uint64
}

// NewIDSource validates name and returns a source minting ids with it.
func NewIDSource(name string) (*IDSource, error) {
	if err := ValidateClientName(name); err != nil {
		return nil, err
	}
	return &IDSource{name: name}, nil
}

// Name returns the client name the source was built with.
func (s *IDSource) Name() string { return s.name }

// Next returns a fresh id. Safe for concurrent use.
func (s *IDSource) Next() string {
	return s.name + "_" + strconv.FormatUint(s.n.Add(1), 10)
}

// ValidateClientName rejects names that are empty, longer than
// MaxClientNameLength, or that contain whitespace or '/'.
func ValidateClientName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty client name", lcmerr.ErrInvalidArgument)
	case len(name) > MaxClientNameLength:
		return fmt.Errorf("%w: client name %q exceeds %d characters",
			lcmerr.ErrInvalidArgument, name, MaxClientNameLength)
	case strings.ContainsAny(name, " \t\r\n/"):
		return fmt.Errorf("%w: client name %q contains whitespace or '/'",
			lcmerr.ErrInvalidArgument, name)
	}
	return nil
}

// RandomClientName derives a short unique name ("cli_4f2a9" style) for
// callers that do not provide one.
func RandomClientName(prefix string) string {
	u := uuid.New()
	return prefix + "_" + hex.EncodeToString(u[:])[:5]
}
