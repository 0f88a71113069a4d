package paint

import (
	"context"
	"fmt"
)

// Sink creates one remote calendar event. Creation is not idempotent;
// callers must not blindly retry a whole batch.
type Sink interface {
	CreateEvent(ctx context.Context, req CreateEventRequest) (string, error)
}

// SubmitResult reports how far a sequential batch got. Cursor is the index
// of the first request that was NOT created, so a retry can resume with
// reqs[Cursor:] without duplicating prior creations.
type SubmitResult struct {
	CreatedIDs []string `json:"created_ids"`
	Cursor     int      `json:"cursor"`
}

// Submitter pushes compiled runs to a sink one at a time, in order.
type Submitter struct {
	Sink Sink
}

// Submit issues create calls sequentially from the cursor. On the first
// failure it stops and returns the error together with the progress made;
// prior creations stay committed.
func (s Submitter) Submit(ctx context.Context, reqs []CreateEventRequest, cursor int) (SubmitResult, error) {
	if cursor < 0 {
		cursor = 0
	}
	res := SubmitResult{Cursor: cursor}
	for ; res.Cursor < len(reqs); res.Cursor++ {
		id, err := s.Sink.CreateEvent(ctx, reqs[res.Cursor])
		if err != nil {
			return res, fmt.Errorf("create event %d/%d: %w", res.Cursor+1, len(reqs), err)
		}
		res.CreatedIDs = append(res.CreatedIDs, id)
	}
	return res, nil
}
