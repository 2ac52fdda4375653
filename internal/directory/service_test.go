package directory

import (
	"context"
	"testing"
	"time"

	"teesheet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDirectoryAPI struct {
	mock.Mock
}

func (m *mockDirectoryAPI) FetchDirectory(ctx context.Context) (*models.DirectorySnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DirectorySnapshot), args.Error(1)
}

func testSnapshot() *models.DirectorySnapshot {
	return &models.DirectorySnapshot{
		Members: []models.Member{
			{Name: "John Smith", Email: "john.smith@club.test"},
			{Name: "Jane Doe", Email: "jane@club.test"},
			{Name: "Johnny Walker", Email: "jw@club.test"},
		},
		Visitors: []models.Visitor{
			{ID: 1, Name: "John Smith"},
			{ID: 2, Name: "Guest Person"},
		},
		Staff: []models.StaffMember{
			{ID: 1, Name: "Pro", Email: "pro@club.test"},
		},
		FetchedAt: time.Now(),
	}
}

func seededService(t *testing.T) *Service {
	t.Helper()
	api := new(mockDirectoryAPI)
	api.On("FetchDirectory", mock.Anything).Return(testSnapshot(), nil).Once()

	svc := NewService(api, NewMemoryDirectoryRepository(time.Hour), nil)
	require.NoError(t, svc.Refresh(context.Background()))
	return svc
}

func TestMembersMatching(t *testing.T) {
	svc := seededService(t)

	members, err := svc.MembersMatching(context.Background(), "john", 10)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "John Smith", members[0].Name)
	assert.Equal(t, "Johnny Walker", members[1].Name)

	// Email substrings match too.
	members, err = svc.MembersMatching(context.Background(), "jane@", 10)
	require.NoError(t, err)
	require.Len(t, members, 1)

	// Limit caps the result.
	members, err = svc.MembersMatching(context.Background(), "club.test", 2)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	// Blank query returns nothing.
	members, err = svc.MembersMatching(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Nil(t, members)
}

func TestMembersByExactName(t *testing.T) {
	svc := seededService(t)

	members, err := svc.MembersByExactName(context.Background(), "  john smith ")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "john.smith@club.test", members[0].Email)

	members, err = svc.MembersByExactName(context.Background(), "John")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestVisitorsByExactName(t *testing.T) {
	svc := seededService(t)

	visitors, err := svc.VisitorsByExactName(context.Background(), "JOHN SMITH")
	require.NoError(t, err)
	require.Len(t, visitors, 1)
	assert.Equal(t, int64(1), visitors[0].ID)
}

func TestStaff(t *testing.T) {
	svc := seededService(t)

	staff, err := svc.Staff(context.Background())
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "pro@club.test", staff[0].Email)
}

func TestServiceWithEmptyCache(t *testing.T) {
	svc := NewService(new(mockDirectoryAPI), NewMemoryDirectoryRepository(time.Hour), nil)

	members, err := svc.MembersMatching(context.Background(), "john", 10)
	require.NoError(t, err)
	assert.Nil(t, members)
}

func TestMemoryRepositoryTTL(t *testing.T) {
	repo := NewMemoryDirectoryRepository(10 * time.Millisecond)
	require.NoError(t, repo.SetSnapshot(context.Background(), testSnapshot()))

	snap, err := repo.GetSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)

	time.Sleep(20 * time.Millisecond)
	snap, err = repo.GetSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}
