// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help contributors find
// extension points and see which concrete type backs each one.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - UserRepository: Account storage used by authentication (internal/auth/service.go)
//   - Pinger: Liveness of a backing store for /health (internal/http/health.go)
//
// ## Audit Interfaces
//
// Every consumer declares the narrow slice of the audit trail it needs. All of
// them are implemented by *audit.Service.
//
//   - lending.Auditor: Loan and catalog events (internal/lending/service.go)
//   - auth.Auditor: Login, logout and setup events (internal/auth/handlers.go)
//   - http.UserAuditor: Account administration events (internal/http/users.go)
//   - tasks.NoticeRecorder: Overdue notice bookkeeping (internal/tasks/overdue_notice.go)
//   - tasks.AuditEventCleaner: Retention cleanup (internal/tasks/cleanup_audit.go)
//
// ## Background Work Interfaces
//
//   - tasks.OverdueLister: Read side of the lending service used by the
//     overdue notice task (internal/tasks/overdue_notice.go)
//   - http.TaskQueue: Enqueue and inspect tasks from the API (internal/http/tasks.go)
//   - scheduler.Enqueuer: Periodic enqueueing (internal/scheduler/maintenance.go)
//
// # Adding a New Background Task
//
//  1. Define the task and its queue in internal/tasks/:
//
//     type ReminderTask struct {
//     DaysBeforeDue int `json:"days_before_due"`
//     }
//
//     func (t ReminderTask) Config() backlite.QueueConfig {
//     return backlite.QueueConfig{Name: "due_reminders", MaxAttempts: 3, Timeout: time.Minute}
//     }
//
//     func NewReminderQueue(loans OverdueLister) backlite.Queue {
//     return backlite.NewQueue[ReminderTask](func(ctx context.Context, t ReminderTask) error {
//     // ...
//     })
//     }
//
//  2. Register the queue in entrypoint.go next to the existing ones.
//
//  3. Expose it through POST /api/tasks/:type/run in internal/http/tasks.go
//     and, if it should run periodically, in internal/scheduler/maintenance.go.
//
// # Adding a New Database Domain
//
//  1. Create sub-package: internal/database/reservations/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Register the entity in the AutoMigrate call in internal/database/database.go.
//
//  4. Add compile-time check:
//
//     var _ ReservationStore = (*Repository)(nil)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
