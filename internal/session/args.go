package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Client-only switches are parsed here and stripped before forwarding, and
// deliberately not recognized inside response files: the server must see the
// same argument shape the user typed, so the client never expands or edits
// anything beyond removing its own switches.
const keepAlivePrefix = "/keepalive"

// ArgumentErrorKind classifies a fatal client argument error.
type ArgumentErrorKind int

const (
	KeepAliveMissingValue ArgumentErrorKind = iota
	KeepAliveNotAnInteger
	KeepAliveTooSmall
)

// ArgumentError is reported before any connection attempt is made.
type ArgumentError struct {
	Kind ArgumentErrorKind
	Arg  string
}

func (e *ArgumentError) Error() string {
	switch e.Kind {
	case KeepAliveMissingValue:
		return fmt.Sprintf("missing value for %s: %q", keepAlivePrefix, e.Arg)
	case KeepAliveNotAnInteger:
		return fmt.Sprintf("value for %s is not an integer: %q", keepAlivePrefix, e.Arg)
	case KeepAliveTooSmall:
		return fmt.Sprintf("value for %s must be -1 or greater: %q", keepAlivePrefix, e.Arg)
	default:
		return fmt.Sprintf("invalid argument: %q", e.Arg)
	}
}

// ParseClientArgs strips client-only switches from args and returns the
// remaining arguments in their original order together with the keep-alive
// value, if one was given. When the switch repeats, the last occurrence
// wins.
func ParseClientArgs(args []string) (forward []string, keepAlive *int, err error) {
	forward = make([]string, 0, len(args))
	for _, arg := range args {
		if !strings.HasPrefix(arg, keepAlivePrefix) {
			forward = append(forward, arg)
			continue
		}
		rest := arg[len(keepAlivePrefix):]
		if len(rest) < 2 || (rest[0] != ':' && rest[0] != '=') {
			return nil, nil, &ArgumentError{Kind: KeepAliveMissingValue, Arg: arg}
		}
		value, convErr := strconv.Atoi(rest[1:])
		if convErr != nil {
			return nil, nil, &ArgumentError{Kind: KeepAliveNotAnInteger, Arg: arg}
		}
		if value < -1 {
			return nil, nil, &ArgumentError{Kind: KeepAliveTooSmall, Arg: arg}
		}
		v := value
		keepAlive = &v
	}
	return forward, keepAlive, nil
}
