package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories over one database handle so a transition
// can run its conditional write and its dependent writes in one transaction.
type Store struct {
	db *gorm.DB

	Tasks       *TaskRepository
	Assignments *AssignmentRepository
	Users       *UserRepository
	Comments    *CommentRepository
	Reminders   *ReminderRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Tasks:       NewTaskRepository(db),
		Assignments: NewAssignmentRepository(db),
		Users:       NewUserRepository(db),
		Comments:    NewCommentRepository(db),
		Reminders:   NewReminderRepository(db),
	}
}

// Atomic runs fn against a transactional view of the store. All writes made
// through the view apply together or not at all.
func (s *Store) Atomic(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(txDB *gorm.DB) error {
		return fn(&Store{
			db:          txDB,
			Tasks:       s.Tasks.withTx(txDB),
			Assignments: s.Assignments.withTx(txDB),
			Users:       s.Users.withTx(txDB),
			Comments:    s.Comments.withTx(txDB),
			Reminders:   s.Reminders.withTx(txDB),
		})
	})
}
