package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/giantswarm/mcp-backoffice/internal/testutil"
	"github.com/giantswarm/mcp-backoffice/storage"
)

func testClient(id string) *storage.Client {
	return &storage.Client{
		ID:           id,
		Name:         "Test Agent",
		RedirectURIs: []string{"https://example.com/cb"},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		CreatedAt:    time.Now(),
	}
}

func TestSaveAndGetClient(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	testutil.AssertNoError(t, s.SaveClient(ctx, testClient("client-1")))

	got, err := s.GetClient(ctx, "client-1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, got.Name, "Test Agent")
}

func TestSaveClientRejectsDuplicateID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	testutil.AssertNoError(t, s.SaveClient(ctx, testClient("client-1")))
	err := s.SaveClient(ctx, testClient("client-1"))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetClientNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.GetClient(context.Background(), "absent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetClientReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	testutil.AssertNoError(t, s.SaveClient(ctx, testClient("client-1")))

	got, err := s.GetClient(ctx, "client-1")
	testutil.AssertNoError(t, err)
	got.Name = "mutated"

	again, err := s.GetClient(ctx, "client-1")
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, again.Name, "Test Agent")
}

func TestDeleteClient(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	testutil.AssertNoError(t, s.SaveClient(ctx, testClient("client-1")))
	testutil.AssertNoError(t, s.DeleteClient(ctx, "client-1"))

	if err := s.DeleteClient(ctx, "client-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCountClients(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	n, err := s.CountClients(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 0)

	testutil.AssertNoError(t, s.SaveClient(ctx, testClient("a")))
	testutil.AssertNoError(t, s.SaveClient(ctx, testClient("b")))

	n, err = s.CountClients(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, 2)
}

func TestClientSecretHashing(t *testing.T) {
	hash, err := storage.HashSecret("super-secret")
	testutil.AssertNoError(t, err)

	c := testClient("client-1")
	c.SecretHash = hash

	testutil.AssertFalse(t, c.Public(), "client with a secret hash is confidential")
	testutil.AssertTrue(t, c.ValidateSecret("super-secret"), "correct secret must validate")
	testutil.AssertFalse(t, c.ValidateSecret("guess"), "wrong secret must not validate")
}
