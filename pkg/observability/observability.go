package observability

import "time"

type DiscoveryResult string

const (
	DiscoveryResultOK   DiscoveryResult = "ok"
	DiscoveryResultFail DiscoveryResult = "fail"
)

// RequestResult labels the outcome of one GraphQL operation. The non-ok
// values mirror the error kinds.
type RequestResult string

const (
	RequestResultOK             RequestResult = "ok"
	RequestResultConnection     RequestResult = "connection"
	RequestResultTLS            RequestResult = "tls"
	RequestResultTimeout        RequestResult = "timeout"
	RequestResultAuthentication RequestResult = "authentication"
	RequestResultVersion        RequestResult = "version"
	RequestResultAPI            RequestResult = "api"
)

type CompatResult string

const (
	CompatResultOK           CompatResult = "ok"
	CompatResultIncompatible CompatResult = "incompatible"
	CompatResultError        CompatResult = "error"
)

// ClientObserver receives client-level metric events.
type ClientObserver interface {
	Discovery(result DiscoveryResult, mode string, d time.Duration)
	Request(result RequestResult, d time.Duration)
	Compatibility(result CompatResult)
}

// NoopClientObserver discards every event.
type NoopClientObserver struct{}

func (NoopClientObserver) Discovery(DiscoveryResult, string, time.Duration) {}
func (NoopClientObserver) Request(RequestResult, time.Duration)             {}
func (NoopClientObserver) Compatibility(CompatResult)                       {}

var _ ClientObserver = NoopClientObserver{}
