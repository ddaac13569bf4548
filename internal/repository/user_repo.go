package repository

import (
	"context"
	"fmt"

	"petvet/internal/docstore"
	"petvet/internal/model"
)

// UserRepository defines operations for user data
type UserRepository interface {
	Create(ctx context.Context, user *model.StoredUser) error
	FindByEmail(ctx context.Context, email string) (*model.StoredUser, error)
}

type userRepository struct {
	coll docstore.Collection
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(store docstore.Store) UserRepository {
	return &userRepository{coll: store.Collection(UsersCollection)}
}

// Create inserts a new user and sets its ID. A taken email yields docstore.ErrDuplicate.
func (r *userRepository) Create(ctx context.Context, user *model.StoredUser) error {
	doc, err := encode(user)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	stored, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = stored.ID()
	return nil
}

// FindByEmail retrieves a user by their email address
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.StoredUser, error) {
	doc, err := r.coll.FindOne(ctx, "email", email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if doc == nil {
		return nil, nil // User not found is not an error for this method's contract, service layer handles it
	}
	user := &model.StoredUser{}
	if err := docstore.Decode(doc, user); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", doc.ID(), err)
	}
	return user, nil
}
