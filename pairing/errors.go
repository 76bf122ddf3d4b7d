package pairing

import "errors"

var (
	errBindingInProgress   = errors.New("pairing: permit-join is not open, or a binding attempt is already in progress")
	errUnknownNode         = errors.New("pairing: no discovered node with that address")
	errNodeNotDiscoverable = errors.New("pairing: node is not in a state eligible for an offer")
	errNoSender            = errors.New("pairing: no send hook configured")
	errSendFailed          = errors.New("pairing: send-offer hook reported failure")
)
