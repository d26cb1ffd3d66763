package analytics

import "time"

// The engine is a pure read path: these models exist so migrations and tests
// can materialize the tables the collectors write into. Date columns the
// query engine binds against are stored as sqlite datetime strings
// ("YYYY-MM-DD HH:MM:SS"), matching the string-based date handling of the
// request layer.

// Visitor is one distinct tracked visitor with its resolved attributes.
type Visitor struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Hash           string `gorm:"uniqueIndex;not null"`
	CreatedAt      string `gorm:"column:created_at;type:datetime;index;not null"`
	Country        string `gorm:"size:2"`
	Region         string
	City           string
	Browser        string
	BrowserVersion string
	OS             string
	DeviceType     string
	Referrer       string
	SourceChannel  string
	UserID         *int64 `gorm:"index"` // NULL or 0 means anonymous
}

// Session is one visit: a sequence of views by one visitor.
type Session struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	VisitorID   uint   `gorm:"index;not null"`
	StartedAt   string `gorm:"type:datetime;index;not null"`
	EndedAt     string `gorm:"type:datetime;index;not null"`
	Duration    int    `gorm:"not null;default:0"` // seconds
	TotalViews  int    `gorm:"not null;default:0"`
	IsBounce    int    `gorm:"not null;default:0"`
	EntryViewID uint
	ExitViewID  uint
}

// View is a single page view within a session.
type View struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	SessionID     uint   `gorm:"index;not null"`
	VisitorID     uint   `gorm:"index;not null"`
	ResourceURIID uint   `gorm:"index"`
	ViewedAt      string `gorm:"type:datetime;index;not null"`
	Duration      int    `gorm:"not null;default:0"`
}

// Event is a custom tracked event.
type Event struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	VisitorID     uint   `gorm:"index;not null"`
	SessionID     uint   `gorm:"index"`
	Name          string `gorm:"index;not null"`
	Date          string `gorm:"type:datetime;index;not null"`
	ResourceURIID uint
}

// Exclusion records tracking hits rejected by the collector, bucketed per
// day and reason.
type Exclusion struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Date   string `gorm:"type:date;index;not null"`
	Reason string `gorm:"index;not null"`
	Count  int    `gorm:"not null;default:0"`
}

// Summary holds per-resource daily pre-aggregated totals.
type Summary struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Date          string `gorm:"type:date;uniqueIndex:idx_summary_unique;not null"`
	ResourceID    uint   `gorm:"uniqueIndex:idx_summary_unique;not null"`
	Visitors      int    `gorm:"not null;default:0"`
	Views         int    `gorm:"not null;default:0"`
	Sessions      int    `gorm:"not null;default:0"`
	Bounces       int    `gorm:"not null;default:0"`
	TotalDuration int    `gorm:"not null;default:0"`
}

// SummaryTotal holds site-wide daily pre-aggregated totals.
type SummaryTotal struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	Date          string `gorm:"type:date;uniqueIndex;not null"`
	Visitors      int    `gorm:"not null;default:0"`
	Views         int    `gorm:"not null;default:0"`
	Sessions      int    `gorm:"not null;default:0"`
	Bounces       int    `gorm:"not null;default:0"`
	TotalDuration int    `gorm:"not null;default:0"`
}

// ResourceURI maps a tracked URI to its resource.
type ResourceURI struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	URI        string `gorm:"uniqueIndex;not null"`
	ResourceID uint   `gorm:"index"`
}

// Resource is a tracked content item (post, page, archive...).
type Resource struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Type        string `gorm:"index;not null;default:'post'"`
	Title       string
	AuthorID    uint `gorm:"index"`
	PublishedAt string `gorm:"type:datetime"`
	UpdatedAt   time.Time
}

// Models returns every model the engine reads, for migration.
func Models() []any {
	return []any{
		&Visitor{},
		&Session{},
		&View{},
		&Event{},
		&Exclusion{},
		&Summary{},
		&SummaryTotal{},
		&ResourceURI{},
		&Resource{},
	}
}
