// Package quote drives the ship-date retry loop against a carrier pricing
// endpoint and normalizes heterogeneous carrier responses.
package quote

import (
    "context"
    "fmt"
    "time"
)

// Outcome classifies one pricing attempt.
type Outcome int

const (
    Success Outcome = iota
    DateUnavailable
    AuthError
    Fatal
)

func (o Outcome) String() string {
    switch o {
    case Success:
        return "success"
    case DateUnavailable:
        return "date_unavailable"
    case AuthError:
        return "auth_error"
    default:
        return "fatal"
    }
}

// Attempt records one (date, try) pair inside the scheduler loop.
type Attempt struct {
    Date    time.Time
    Outcome Outcome
    Detail  string
}

// SessionSource supplies a valid token and allows forcing a re-login.
type SessionSource interface {
    Get(ctx context.Context) (string, error)
    Invalidate()
}

// PriceFunc performs one pricing call for a candidate ship date.
type PriceFunc func(ctx context.Context, token string, date time.Time) (status int, body []byte, err error)

// Classifier maps a raw attempt result to an outcome and a human detail.
// Each carrier supplies its own: the date-unavailable signal is a
// carrier-specific error code.
type Classifier func(status int, body []byte, err error) (Outcome, string)

// Scheduler iterates a fixed window of candidate ship dates, earliest first,
// absorbing transient auth failures and skipping unavailable dates.
type Scheduler struct {
    Window  int // candidate ship dates, today inclusive
    PerDate int // attempts per date, absorbs one auth round-trip
    Sessions SessionSource
    Price    PriceFunc
    Classify Classifier
}

// DefaultWindow and DefaultPerDate match carrier capacity behavior: skipped
// dates are common, auth expiry is rare and self-healing.
const (
    DefaultWindow  = 15
    DefaultPerDate = 2
)

// Result is the terminal state of a scheduler run. Attempts is the full
// attempt log, kept for diagnostics even on success.
type Result struct {
    Body     []byte
    Date     time.Time
    Attempts []Attempt
}

// Error is returned when the run terminates without a priced response.
type Error struct {
    Outcome Outcome
    Detail  string
    Status  int
}

func (e *Error) Error() string {
    switch e.Outcome {
    case DateUnavailable:
        return fmt.Sprintf("все даты в окне недоступны: %s", e.Detail)
    case AuthError:
        return fmt.Sprintf("не удалось авторизоваться: %s", e.Detail)
    default:
        return e.Detail
    }
}

// Run executes the windowed retry loop starting at the given date.
//
// Per attempt: auth errors invalidate the session and retry the same date,
// consuming one of the PerDate attempts; a date-unavailable response advances
// the date cursor without consuming a retry; anything unclassified is fatal
// and stops the whole loop, because the request itself is presumed malformed.
func (s *Scheduler) Run(ctx context.Context, start time.Time) (Result, error) {
    window, perDate := s.Window, s.PerDate
    if window <= 0 { window = DefaultWindow }
    if perDate <= 0 { perDate = DefaultPerDate }

    res := Result{}
    lastDetail := ""
    lastStatus := 0
    for di := 0; di < window; di++ {
        date := start.AddDate(0, 0, di)
        tries := 0
    retrySameDate:
        for tries < perDate {
            token, err := s.Sessions.Get(ctx)
            if err != nil {
                return res, &Error{Outcome: AuthError, Detail: err.Error()}
            }
            status, body, err := s.Price(ctx, token, date)
            outcome, detail := s.Classify(status, body, err)
            tries++
            res.Attempts = append(res.Attempts, Attempt{Date: date, Outcome: outcome, Detail: detail})
            switch outcome {
            case Success:
                res.Body = body
                res.Date = date
                return res, nil
            case AuthError:
                s.Sessions.Invalidate()
                lastDetail, lastStatus = detail, status
                continue
            case DateUnavailable:
                lastDetail, lastStatus = detail, status
                break retrySameDate
            default:
                return res, &Error{Outcome: Fatal, Detail: detail, Status: status}
            }
        }
        if tries >= perDate && len(res.Attempts) > 0 && res.Attempts[len(res.Attempts)-1].Outcome == AuthError {
            // Reauthentication did not heal; more dates will not either.
            return res, &Error{Outcome: AuthError, Detail: lastDetail, Status: lastStatus}
        }
    }
    return res, &Error{Outcome: DateUnavailable, Detail: lastDetail, Status: lastStatus}
}
