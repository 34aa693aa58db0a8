package types

// FetchStatus classifies the outcome of a remote fetch. Callers switch
// on the variant instead of unwrapping transport errors.
type FetchStatus int

const (
	FetchOK FetchStatus = iota
	FetchTimeout
	FetchUnreachable
	FetchMalformed
)

func (s FetchStatus) String() string {
	switch s {
	case FetchOK:
		return "ok"
	case FetchTimeout:
		return "timeout"
	case FetchUnreachable:
		return "unreachable"
	case FetchMalformed:
		return "malformed"
	}
	return "unknown"
}
