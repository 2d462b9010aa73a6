package dispatch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ActionDownload prefixes deferred download payloads.
const ActionDownload = "dl"

// ErrInvalidPayload is returned for button data that was not produced by EncodePayload.
var ErrInvalidPayload = errors.New("dispatch: invalid payload")

// Payload is the data carried by a deferred download button.
type Payload struct {
	CandidateID string
	RequesterID int64
}

// EncodePayload renders "dl <candidateID> <requesterID>".
func EncodePayload(p Payload) string {
	return fmt.Sprintf("%s %s %d", ActionDownload, p.CandidateID, p.RequesterID)
}

// ParsePayload is the inverse of EncodePayload.
func ParsePayload(data string) (Payload, error) {
	fields := strings.Fields(data)
	if len(fields) != 3 || fields[0] != ActionDownload {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, data)
	}
	requester, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, data)
	}
	return Payload{CandidateID: fields[1], RequesterID: requester}, nil
}
