/*
Package service implements request/response calls over the bus. A Client
publishes each request on {channel}/req with a fresh correlation id and
blocks on the per-call reply channel {channel}/rsp/{id}; a Server answers
every request with exactly one response. Failures arrive as typed errors:
TimeoutError when the wait elapses, RemoteError when the handler on the
other side failed.
*/
package service
