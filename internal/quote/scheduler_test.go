package quote

import (
    "context"
    "errors"
    "testing"
    "time"
)

type fakeSessions struct {
    tokens      []string
    gets        int
    invalidated int
    failGet     error
}

func (f *fakeSessions) Get(ctx context.Context) (string, error) {
    if f.failGet != nil { return "", f.failGet }
    i := f.invalidated
    if i >= len(f.tokens) { i = len(f.tokens) - 1 }
    f.gets++
    return f.tokens[i], nil
}

func (f *fakeSessions) Invalidate() { f.invalidated++ }

func day(start time.Time, n int) time.Time { return start.AddDate(0, 0, n) }

// classifier stub: statuses map directly to outcomes.
func testClassify(status int, body []byte, err error) (Outcome, string) {
    if err != nil { return Fatal, err.Error() }
    switch status {
    case 200:
        return Success, ""
    case 401:
        return AuthError, "bad session"
    case 409:
        return DateUnavailable, "нет даты"
    default:
        return Fatal, "boom"
    }
}

func TestSuccessOnDay14AfterUnavailableWindow(t *testing.T) {
    start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
    dates := []time.Time{}
    s := &Scheduler{
        Sessions: &fakeSessions{tokens: []string{"t"}},
        Price: func(ctx context.Context, token string, date time.Time) (int, []byte, error) {
            dates = append(dates, date)
            if len(dates) == 15 { return 200, []byte(`{"price":100}`), nil }
            return 409, []byte(`{}`), nil
        },
        Classify: testClassify,
    }
    res, err := s.Run(context.Background(), start)
    if err != nil { t.Fatalf("run: %v", err) }
    if !res.Date.Equal(day(start, 14)) { t.Fatalf("successful date: %v", res.Date) }
    unavailable := 0
    for _, a := range res.Attempts {
        if a.Outcome == DateUnavailable { unavailable++ }
    }
    if unavailable != 14 { t.Fatalf("expected 14 date-unavailable transitions, got %d", unavailable) }
}

func TestDateUnavailableAlwaysAdvances(t *testing.T) {
    start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
    seen := map[string]int{}
    s := &Scheduler{
        Sessions: &fakeSessions{tokens: []string{"t"}},
        Price: func(ctx context.Context, token string, date time.Time) (int, []byte, error) {
            seen[date.Format("2006-01-02")]++
            return 409, []byte(`{}`), nil
        },
        Classify: testClassify,
    }
    _, err := s.Run(context.Background(), start)
    var se *Error
    if !errors.As(err, &se) || se.Outcome != DateUnavailable {
        t.Fatalf("expected window-exhausted error, got %v", err)
    }
    if len(seen) != DefaultWindow { t.Fatalf("expected %d distinct dates, got %d", DefaultWindow, len(seen)) }
    for d, n := range seen {
        if n != 1 { t.Fatalf("date %s attempted %d times", d, n) }
    }
}

func TestAuthErrorRetriesSameDateWithFreshSession(t *testing.T) {
    start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
    fs := &fakeSessions{tokens: []string{"old", "new"}}
    var calls []struct {
        token string
        date  time.Time
    }
    s := &Scheduler{
        Sessions: fs,
        Price: func(ctx context.Context, token string, date time.Time) (int, []byte, error) {
            calls = append(calls, struct {
                token string
                date  time.Time
            }{token, date})
            if token == "old" { return 401, nil, nil }
            return 200, []byte(`{"price":1}`), nil
        },
        Classify: testClassify,
    }
    res, err := s.Run(context.Background(), start)
    if err != nil { t.Fatalf("run: %v", err) }
    if len(calls) != 2 { t.Fatalf("expected 2 attempts, got %d", len(calls)) }
    if !calls[0].date.Equal(calls[1].date) { t.Fatal("auth retry must not advance the date cursor") }
    if calls[1].token != "new" { t.Fatalf("expected fresh token, got %q", calls[1].token) }
    if !res.Date.Equal(start) { t.Fatalf("date: %v", res.Date) }
}

func TestPersistentAuthFailureStopsLoop(t *testing.T) {
    start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
    attempts := 0
    s := &Scheduler{
        Sessions: &fakeSessions{tokens: []string{"t"}},
        Price: func(ctx context.Context, token string, date time.Time) (int, []byte, error) {
            attempts++
            return 401, nil, nil
        },
        Classify: testClassify,
    }
    _, err := s.Run(context.Background(), start)
    var se *Error
    if !errors.As(err, &se) || se.Outcome != AuthError {
        t.Fatalf("expected auth error, got %v", err)
    }
    if attempts != DefaultPerDate { t.Fatalf("expected %d attempts on one date, got %d", DefaultPerDate, attempts) }
}

func TestFatalStopsImmediately(t *testing.T) {
    start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
    attempts := 0
    s := &Scheduler{
        Sessions: &fakeSessions{tokens: []string{"t"}},
        Price: func(ctx context.Context, token string, date time.Time) (int, []byte, error) {
            attempts++
            return 500, []byte(`{}`), nil
        },
        Classify: testClassify,
    }
    _, err := s.Run(context.Background(), start)
    var se *Error
    if !errors.As(err, &se) || se.Outcome != Fatal {
        t.Fatalf("expected fatal, got %v", err)
    }
    if attempts != 1 { t.Fatalf("fatal must stop the whole loop, got %d attempts", attempts) }
}

func TestSessionAcquisitionFailureNoAttempts(t *testing.T) {
    start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
    attempts := 0
    s := &Scheduler{
        Sessions: &fakeSessions{tokens: []string{"t"}, failGet: errors.New("login refused")},
        Price: func(ctx context.Context, token string, date time.Time) (int, []byte, error) {
            attempts++
            return 200, nil, nil
        },
        Classify: testClassify,
    }
    _, err := s.Run(context.Background(), start)
    var se *Error
    if !errors.As(err, &se) || se.Outcome != AuthError {
        t.Fatalf("expected auth error, got %v", err)
    }
    if attempts != 0 { t.Fatalf("no pricing call may happen without a session, got %d", attempts) }
}

func TestWindowBounds(t *testing.T) {
    start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
    attempts := 0
    s := &Scheduler{
        Window:  3,
        PerDate: 2,
        Sessions: &fakeSessions{tokens: []string{"t"}},
        Price: func(ctx context.Context, token string, date time.Time) (int, []byte, error) {
            attempts++
            return 409, nil, nil
        },
        Classify: testClassify,
    }
    _, _ = s.Run(context.Background(), start)
    if attempts != 3 { t.Fatalf("expected 3 attempts across 3 dates, got %d", attempts) }
}
