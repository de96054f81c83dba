package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetcomply/internal/client"
	"fleetcomply/internal/model"
)

func doc(name string) QueueItem {
	return QueueItem{
		Kind:         KindDocument,
		Name:         name,
		DocumentType: model.DocTypeInsurance,
		File:         &client.File{Name: name + ".pdf", Content: []byte("%PDF-1.4")},
	}
}

func TestUploadQueue_AddRequiresTypeAndName(t *testing.T) {
	q, err := NewUploadQueue(&fakeUploads{}, 1)
	require.NoError(t, err)

	item := doc("")
	assert.ErrorContains(t, q.Add(item), "name is required")

	item = doc("Policy")
	item.DocumentType = ""
	assert.ErrorContains(t, q.Add(item), "document_type is required")

	assert.ErrorContains(t, q.Add(QueueItem{Kind: KindRecord}), "compliance_type_id is required")
	assert.ErrorContains(t, q.Add(QueueItem{Kind: "photo"}), "kind must be one of")

	require.NoError(t, q.Add(doc("Policy")))
	require.NoError(t, q.Add(doc("Policy")))
	require.NoError(t, q.Add(QueueItem{Kind: KindRecord, ComplianceTypeID: 2}))
	assert.Equal(t, 3, q.Len())

	_, err = NewUploadQueue(&fakeUploads{}, 0)
	assert.ErrorIs(t, err, ErrInvalidVehicleID)
}

func TestUploadQueue_PartialFailure(t *testing.T) {
	api := &fakeUploads{failNames: map[string]bool{"B": true}}
	q, err := NewUploadQueue(api, 1)
	require.NoError(t, err)
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, q.Add(doc(name)))
	}

	res, err := q.Submit(context.Background(), Form{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailCount)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "B", res.Failed[0].Item.Name)
	var apiErr *client.APIError
	assert.ErrorAs(t, res.Failed[0].Err, &apiErr)
	assert.Equal(t, []string{"A", "B", "C"}, api.calls)
	assert.Zero(t, q.Len())

	require.NoError(t, q.Add(res.Failed[0].Item))
	assert.Equal(t, 1, q.Len())
}

func TestUploadQueue_AllFailedKeepsQueue(t *testing.T) {
	api := &fakeUploads{failNames: map[string]bool{"A": true, "B": true}}
	q, err := NewUploadQueue(api, 1)
	require.NoError(t, err)
	require.NoError(t, q.Add(doc("A")))
	require.NoError(t, q.Add(doc("B")))

	res, err := q.Submit(context.Background(), Form{})
	require.NoError(t, err)
	assert.Zero(t, res.SuccessCount)
	assert.Equal(t, 2, res.FailCount)
	assert.Equal(t, 2, q.Len())
}

func TestUploadQueue_IncompleteFormBlocksBatch(t *testing.T) {
	api := &fakeUploads{}
	q, err := NewUploadQueue(api, 1)
	require.NoError(t, err)
	require.NoError(t, q.Add(doc("A")))

	_, err = q.Submit(context.Background(), Form{Touched: true, Item: QueueItem{Kind: KindDocument, Name: "half done"}})
	assert.ErrorIs(t, err, ErrIncompleteForm)
	assert.Empty(t, api.calls)
	assert.Equal(t, 1, q.Len())

	// 未填写的表单即使为空也会被忽略
	res, err := q.Submit(context.Background(), Form{Item: QueueItem{}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
}

func TestUploadQueue_TouchedFormGoesFirst(t *testing.T) {
	api := &fakeUploads{}
	q, err := NewUploadQueue(api, 1)
	require.NoError(t, err)
	require.NoError(t, q.Add(doc("queued")))
	require.NoError(t, q.Add(QueueItem{Kind: KindRecord, ComplianceTypeID: 3}))

	res, err := q.Submit(context.Background(), Form{Touched: true, Item: doc("form")})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, []string{"form", "queued", "record"}, api.calls)
	assert.Zero(t, q.Len())
}
