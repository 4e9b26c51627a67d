/*
Package bus provides the shared dispatch node every client and server in a
process hangs off. One background goroutine pumps the transport's inbound
messages and delivers them, decoded, to typed subscriptions; publishing goes
straight through to the transport. The node owns ordering: subscriber
callbacks run one at a time, in arrival order, on the dispatch goroutine.
*/
package bus
