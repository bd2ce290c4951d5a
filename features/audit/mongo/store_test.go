package mongo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sifthub/exporter/export"
	clientsmongo "github.com/sifthub/exporter/features/audit/mongo/clients/mongo"
)

type fakeClient struct {
	gotEventID  string
	gotClientID int
	gotStatus   string
	gotFields   clientsmongo.Fields
	applied     bool
	err         error
}

func (f *fakeClient) Name() string { return "fake-audit" }

func (f *fakeClient) Ping(context.Context) error { return nil }

func (f *fakeClient) MarkStatus(_ context.Context, eventID string, clientID int, status string, fields clientsmongo.Fields) (bool, error) {
	f.gotEventID = eventID
	f.gotClientID = clientID
	f.gotStatus = status
	f.gotFields = fields
	return f.applied, f.err
}

func TestUpdateDelegates(t *testing.T) {
	t.Parallel()

	client := &fakeClient{applied: true}
	store, err := NewStore(client)
	require.NoError(t, err)

	total := 17
	applied, err := store.Update(context.Background(), "evt-1", 42, export.StatusSuccess, export.AuditFields{
		TotalTime: &total,
		Bucket:    "sifthub-exports",
		URL:       "https://signed",
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "evt-1", client.gotEventID)
	assert.Equal(t, 42, client.gotClientID)
	assert.Equal(t, "SUCCESS", client.gotStatus)
	require.NotNil(t, client.gotFields.TotalTime)
	assert.Equal(t, 17, *client.gotFields.TotalTime)
	assert.Equal(t, "sifthub-exports", client.gotFields.Bucket)
	assert.Equal(t, "https://signed", client.gotFields.URL)
}

func TestUpdateReportsMiss(t *testing.T) {
	t.Parallel()

	store, err := NewStore(&fakeClient{applied: false})
	require.NoError(t, err)

	applied, err := store.Update(context.Background(), "evt-1", 42, export.StatusProcessing, export.AuditFields{})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestUpdatePropagatesError(t *testing.T) {
	t.Parallel()

	store, err := NewStore(&fakeClient{err: errors.New("server selection timeout")})
	require.NoError(t, err)

	_, err = store.Update(context.Background(), "evt-1", 42, export.StatusFailed, export.AuditFields{})
	require.Error(t, err)
}

func TestNewStoreRequiresClient(t *testing.T) {
	t.Parallel()

	_, err := NewStore(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client is required")
}
