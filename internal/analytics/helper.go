package analytics

import "time"

// onlineWindowMinutes is how far back a session's last activity may be for
// its visitor to count as online.
const onlineWindowMinutes = 5

// CountVisitors returns the distinct visitor count for the given range.
func (e *Executor) CountVisitors(from, to string) (int64, error) {
	return e.countSource("visitors", from, to)
}

// CountViews returns the page view count for the given range.
func (e *Executor) CountViews(from, to string) (int64, error) {
	return e.countSource("views", from, to)
}

// CountSessions returns the session count for the given range.
func (e *Executor) CountSessions(from, to string) (int64, error) {
	return e.countSource("sessions", from, to)
}

// CountOnline returns the number of visitors with session activity inside
// the online window.
func (e *Executor) CountOnline() (int64, error) {
	now := e.now()
	from := now.Add(-onlineWindowMinutes * time.Minute).UTC().Format("2006-01-02 15:04:05")
	to := now.UTC().Format("2006-01-02 15:04:05")
	return e.countSource("online_visitors", from, to)
}

func (e *Executor) countSource(source, from, to string) (int64, error) {
	q, err := NewBuilder().
		Sources(source).
		DateRange(from, to).
		Format(FormatFlat).
		Build()
	if err != nil {
		return 0, err
	}
	res, err := e.Execute(q)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return toInt64(res.Rows[0][source]), nil
}
