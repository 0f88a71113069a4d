package paint

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPalette() Palette {
	return Palette{
		Titles: map[ColorKey]string{
			ColorRed:  "deep work",
			ColorBlue: "meetings",
		},
	}
}

func TestCompileSingleRun(t *testing.T) {
	var cells DayCells
	for i := 12; i < 24; i++ { // 05:00-06:00 from the 04:00 base
		cells[i] = ColorRed
	}
	g := Grid{"2024-06-03": cells}
	reqs, err := Compile(g, testPalette(), time.UTC)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	wantStart := time.Date(2024, 6, 3, 5, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)
	if !reqs[0].Start.Equal(wantStart) || !reqs[0].End.Equal(wantEnd) {
		t.Fatalf("got %v-%v, want %v-%v", reqs[0].Start, reqs[0].End, wantStart, wantEnd)
	}
	if reqs[0].Title != "deep work" {
		t.Fatalf("title = %q", reqs[0].Title)
	}
}

func TestCompileAdjacentSameColorIsOneRun(t *testing.T) {
	var cells DayCells
	for i := 0; i <= 10; i++ {
		cells[i] = ColorRed
	}
	g := Grid{"2024-06-03": cells}
	reqs, err := Compile(g, testPalette(), time.UTC)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("same-color adjacency must compile to one event, got %d", len(reqs))
	}
	if got := reqs[0].End.Sub(reqs[0].Start); got != 55*time.Minute {
		t.Fatalf("run length = %v, want 55m", got)
	}
}

func TestCompileColorChangeSplitsRun(t *testing.T) {
	var cells DayCells
	cells[0], cells[1] = ColorRed, ColorRed
	cells[2], cells[3] = ColorBlue, ColorBlue
	cells[5] = ColorRed // gap at 4 closes and reopens
	g := Grid{"2024-06-03": cells}
	reqs, err := Compile(g, testPalette(), time.UTC)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("expected 3 runs, got %d: %v", len(reqs), reqs)
	}
	if reqs[0].Color != ColorRed || reqs[1].Color != ColorBlue || reqs[2].Color != ColorRed {
		t.Fatalf("unexpected colors: %v", reqs)
	}
	if !reqs[1].Start.Equal(reqs[0].End) {
		t.Fatalf("color change must split at the same instant: %v vs %v", reqs[0].End, reqs[1].Start)
	}
}

func TestCompileOpenRunClosesAtDayEnd(t *testing.T) {
	var cells DayCells
	for i := SlotsPerDay - 6; i < SlotsPerDay; i++ {
		cells[i] = ColorBlue
	}
	g := Grid{"2024-06-03": cells}
	reqs, err := Compile(g, testPalette(), time.UTC)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(reqs))
	}
	// Slot 288 is 04:00 + 24h, i.e. 04:00 the next day.
	want := time.Date(2024, 6, 4, 4, 0, 0, 0, time.UTC)
	if !reqs[0].End.Equal(want) {
		t.Fatalf("end = %v, want %v", reqs[0].End, want)
	}
}

func TestCompileDayOrderThenSlotOrder(t *testing.T) {
	var a, b DayCells
	a[10] = ColorRed
	b[0] = ColorBlue
	g := Grid{"2024-06-04": a, "2024-06-03": b}
	reqs, err := Compile(g, testPalette(), time.UTC)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(reqs))
	}
	if !reqs[0].Start.Before(reqs[1].Start) {
		t.Fatalf("requests out of day order: %v", reqs)
	}
}

func TestCompileBlackFallbackTitle(t *testing.T) {
	var cells DayCells
	cells[0] = ColorBlack
	g := Grid{"2024-06-03": cells}
	reqs, err := Compile(g, Palette{Titles: map[ColorKey]string{}}, time.UTC)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if reqs[0].Title != "予定" {
		t.Fatalf("blank black title must fall back, got %q", reqs[0].Title)
	}
}

func TestCompileRejectsUnknownColor(t *testing.T) {
	var cells DayCells
	cells[0] = ColorKey("chartreuse")
	if _, err := Compile(Grid{"2024-06-03": cells}, testPalette(), time.UTC); err == nil {
		t.Fatal("expected unknown color error")
	}
	if _, err := Compile(Grid{"June 3rd": {}}, testPalette(), time.UTC); err == nil {
		t.Fatal("expected invalid day key error")
	}
}

type fakeSink struct {
	created []CreateEventRequest
	failAt  int // 1-based call number to fail on; 0 = never
	calls   int
}

func (f *fakeSink) CreateEvent(_ context.Context, req CreateEventRequest) (string, error) {
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return "", errors.New("provider unavailable")
	}
	f.created = append(f.created, req)
	return req.Start.Format(time.RFC3339), nil
}

func TestSubmitSequentialOrder(t *testing.T) {
	sink := &fakeSink{}
	reqs := []CreateEventRequest{
		{Title: "a", Start: time.Date(2024, 6, 3, 5, 0, 0, 0, time.UTC)},
		{Title: "b", Start: time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)},
	}
	res, err := Submitter{Sink: sink}.Submit(context.Background(), reqs, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Cursor != 2 || len(res.CreatedIDs) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if sink.created[0].Title != "a" || sink.created[1].Title != "b" {
		t.Fatalf("creation order broken: %v", sink.created)
	}
}

func TestSubmitPartialFailureKeepsProgress(t *testing.T) {
	sink := &fakeSink{failAt: 2}
	reqs := make([]CreateEventRequest, 3)
	for i := range reqs {
		reqs[i].Start = time.Date(2024, 6, 3, 5+i, 0, 0, 0, time.UTC)
	}
	res, err := Submitter{Sink: sink}.Submit(context.Background(), reqs, 0)
	if err == nil {
		t.Fatal("expected mid-batch error")
	}
	if res.Cursor != 1 || len(res.CreatedIDs) != 1 {
		t.Fatalf("cursor must point at the failed request: %+v", res)
	}
	// Resume from the cursor; the first creation is not repeated.
	sink.failAt = 0
	res2, err := Submitter{Sink: sink}.Submit(context.Background(), reqs, res.Cursor)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res2.Cursor != 3 || len(sink.created) != 3 {
		t.Fatalf("resume incomplete: %+v created=%d", res2, len(sink.created))
	}
}
