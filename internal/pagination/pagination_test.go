package pagination

import (
	"fmt"
	"testing"

	"fitbuddy/backend/internal/models"
	"fitbuddy/backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		in       Params
		expected Params
	}{
		{"zero values", Params{}, Params{Page: 1, Limit: DefaultLimit}},
		{"negative page", Params{Page: -3, Limit: 5}, Params{Page: 1, Limit: 5}},
		{"limit above max", Params{Page: 2, Limit: 500}, Params{Page: 2, Limit: MaxLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.in.Normalize())
		})
	}
}

func TestNew(t *testing.T) {
	resp := New[int](nil, 21, 3, 10)
	assert.NotNil(t, resp.Data)
	assert.Equal(t, Meta{TotalItems: 21, TotalPages: 3, CurrentPage: 3, PageSize: 10}, resp.Meta)
}

func TestPaginate(t *testing.T) {
	db := testutil.NewDB(t)
	for i := 0; i < 7; i++ {
		testutil.CreateUser(t, db, fmt.Sprintf("user%d", i))
	}

	query := db.Where("display_name <> ?", "user0").Order("id DESC")
	page, err := Paginate[models.User](query, Params{Page: 2, Limit: 4})
	require.NoError(t, err)

	assert.Equal(t, int64(6), page.Meta.TotalItems)
	assert.Equal(t, 2, page.Meta.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "user2", page.Data[0].DisplayName)
	assert.Equal(t, "user1", page.Data[1].DisplayName)
}
