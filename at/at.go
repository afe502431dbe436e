package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = "> "

	// Commands
	CmdAt             = "AT"
	CmdReset          = "AT+RST"
	CmdWifiMode       = "AT+CWMODE="
	CmdJoinAP         = "AT+CWJAP="
	CmdConnectionMode = "AT+CIPMUX="
	CmdServerMode     = "AT+CIPSERVER="
	CmdGetIP          = "AT+CIFSR"
	CmdStart          = "AT+CIPSTART="
	CmdClose          = "AT+CIPCLOSE"
	CmdTxModeOn       = "AT+CIPMODE=1"
	CmdTxModeOff      = "AT+CIPMODE=0"
	CmdSend           = "AT+CIPSEND="

	// Response Tokens
	Ready    = "ready"
	OK       = "OK"
	SendOK   = "SEND OK"
	NoChange = "no change"
	Link     = "Link"
	Unlink   = "Unlink"

	// Inbound data marker
	IPD = "+IPD"

	// Unknown is prepended to responses that match no known token.
	Unknown = "Unk: "

	// Flags used by the 0/1 style commands
	True  = "1"
	False = "0"
)

// DefaultBudget is the number of poll iterations a wait is allowed
// when the caller does not override it.
const DefaultBudget = 3000

// Wifi modes accepted by AT+CWMODE.
const (
	ModeStation     = 1
	ModeAccessPoint = 2
)

type ResponseKind int

const (
	KindEmpty        ResponseKind = iota // nothing drained
	KindToken                            // ready, OK, no change, Link, Unlink
	KindFrame                            // +IPD inbound data
	KindUnrecognized                     // chatter matching no known token
	KindMalformed                        // +IPD that could not be satisfied
)

func (k ResponseKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindToken:
		return "token"
	case KindFrame:
		return "frame"
	case KindUnrecognized:
		return "unrecognized"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}
