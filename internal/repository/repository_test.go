package repository

import (
	"context"
	"testing"
	"time"

	"petvet/internal/docstore"
	"petvet/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() docstore.Store {
	return docstore.NewMemoryStore(StoreOptions())
}

func TestServiceRepository_SeedIsActive(t *testing.T) {
	repo := NewServiceRepository(newTestStore())

	services, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, services, 4)
	assert.Equal(t, "s1", services[0].ID)
	assert.Equal(t, "Consulta Veterinária", services[0].Name)
	assert.Equal(t, model.Price(80), services[0].Price)
	for _, s := range services {
		assert.True(t, s.Active, s.ID)
	}
}

func TestServiceRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewServiceRepository(newTestStore())
	now := time.Now().UTC()

	s := &model.Service{Name: "Microchip", Description: "Pet ID chip", Price: 99.9, Active: true, CreatedAt: &now}
	require.NoError(t, repo.Create(ctx, s))
	require.NotEmpty(t, s.ID)

	found, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Microchip", found.Name)
	assert.Equal(t, model.Price(99.9), found.Price)
	require.NotNil(t, found.CreatedAt)
	assert.True(t, now.Equal(*found.CreatedAt))

	missing, err := repo.FindByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestServiceRepository_UpdateMergesPatch(t *testing.T) {
	ctx := context.Background()
	repo := NewServiceRepository(newTestStore())

	price := model.Price(95)
	inactive := false
	deletedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	updated, err := repo.Update(ctx, "s1", model.ServicePatch{Price: &price, Active: &inactive, DeletedAt: &deletedAt})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Consulta Veterinária", updated.Name)
	assert.Equal(t, "Exame clínico completo.", updated.Description)
	assert.Equal(t, model.Price(95), updated.Price)
	assert.False(t, updated.Active)
	require.NotNil(t, updated.DeletedAt)
	assert.True(t, deletedAt.Equal(*updated.DeletedAt))

	missing, err := repo.Update(ctx, "nope", model.ServicePatch{Price: &price})
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestServiceRepository_LegacyStringPrice(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	_, err := store.Collection(ServicesCollection).InsertOne(ctx, docstore.Document{"id": "old", "name": "Legacy", "price": "30.5"})
	require.NoError(t, err)

	s, err := NewServiceRepository(store).FindByID(ctx, "old")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, model.Price(30.5), s.Price)
	assert.True(t, s.Active)
}

func TestUserRepository_CreateAndFindByEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestStore())

	user := &model.StoredUser{
		User:         model.User{Name: "Ana", Email: "ana@x.com", CreatedAt: time.Now().UTC()},
		PasswordHash: "hash",
	}
	require.NoError(t, repo.Create(ctx, user))
	require.NotEmpty(t, user.ID)

	found, err := repo.FindByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)

	missing, err := repo.FindByEmail(ctx, "ANA@x.com")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestStore())

	require.NoError(t, repo.Create(ctx, &model.StoredUser{User: model.User{Email: "ana@x.com"}}))
	err := repo.Create(ctx, &model.StoredUser{User: model.User{Email: "ana@x.com"}})
	assert.ErrorIs(t, err, docstore.ErrDuplicate)
}

func TestAppointmentRepository_FindByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentRepository(newTestStore())

	empty, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, owner := range []string{"u1", "u2", "u1"} {
		a := &model.Appointment{UserID: owner, ServiceID: "s1", PetName: "Rex", Status: model.AppointmentStatusPending}
		require.NoError(t, repo.Create(ctx, a))
		require.NotEmpty(t, a.ID)
	}

	mine, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, a := range mine {
		assert.Equal(t, "u1", a.UserID)
	}
}
