package discovery

// Mode is the transport posture observed during discovery
type Mode string

const (
	ModeNone    Mode = "none"    // plain HTTP
	ModeYes     Mode = "yes"     // HTTPS with a self-signed certificate
	ModeStrict  Mode = "strict"  // HTTPS via the myunraid.net redirect domain
	ModeUnknown Mode = "unknown" // unrecognised redirect followed as given
)

// Outcome is the cached result of discovery. Build it only through the
// outcome constructors so the mode/endpoint pairing stays consistent.
type Outcome struct {
	Mode     Mode
	Endpoint Endpoint
}

func outcomeNone(ep Endpoint) Outcome {
	return Outcome{Mode: ModeNone, Endpoint: ep}
}

func outcomeYes(ep Endpoint) Outcome {
	return Outcome{Mode: ModeYes, Endpoint: ep}
}

func outcomeStrict(ep Endpoint) Outcome {
	ep.VerifyTLS = true
	return Outcome{Mode: ModeStrict, Endpoint: ep}
}

func outcomeUnknown(ep Endpoint) Outcome {
	return Outcome{Mode: ModeUnknown, Endpoint: ep}
}

// Describe returns a human readable description of the mode
func (m Mode) Describe() string {
	switch m {
	case ModeNone:
		return "HTTP only"
	case ModeYes:
		return "HTTPS, self-signed certificate"
	case ModeStrict:
		return "HTTPS via myunraid.net, verified certificate"
	case ModeUnknown:
		return "unrecognised redirect, followed as given"
	default:
		return "unresolved"
	}
}
