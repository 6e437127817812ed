// Package sqlite is the single-file store, built on gorm. The schema is
// created by AutoMigrate from the models below.
package sqlite

import (
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type userModel struct {
	ID           string    `gorm:"primarykey;size:36"`
	Name         string    `gorm:"size:100;not null"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:users_email_key"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"size:16;not null;default:member"`
	IsActive     bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

type taskModel struct {
	ID          string     `gorm:"primarykey;size:36"`
	Title       string     `gorm:"size:200;not null"`
	Description string     `gorm:"size:1000;not null"`
	Status      string     `gorm:"size:16;not null;index:tasks_status_idx"`
	Priority    string     `gorm:"size:16;not null"`
	UserID      string     `gorm:"size:36;not null;index:tasks_user_created_idx,priority:1"`
	DueDate     *time.Time
	CreatedAt   time.Time  `gorm:"not null;index:tasks_user_created_idx,priority:2"`
	UpdatedAt   time.Time  `gorm:"not null"`
	Owner       userModel  `gorm:"foreignKey:UserID;references:ID"`
}

func (taskModel) TableName() string { return "tasks" }

func userFromModel(m userModel) user.User {
	return user.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         user.Role(m.Role),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func userToModel(u user.User) userModel {
	return userModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func taskFromModel(m taskModel) task.Task {
	t := task.Task{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      task.Status(m.Status),
		Priority:    task.Priority(m.Priority),
		OwnerID:     m.UserID,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}

	if m.DueDate != nil {
		due := m.DueDate.UTC()
		t.DueDate = &due
	}

	if m.Owner.ID != "" {
		t.Owner = &task.OwnerSummary{ID: m.Owner.ID, Name: m.Owner.Name, Email: m.Owner.Email}
	}

	return t
}

func taskToModel(t task.Task) taskModel {
	return taskModel{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		UserID:      t.OwnerID,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
