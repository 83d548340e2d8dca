package types

import "testing"

func TestTotalPages(t *testing.T) {
	cases := []struct {
		name     string
		total    int64
		pageSize int
		want     int64
	}{
		{"empty", 0, 10, 0},
		{"exact multiple", 100, 10, 10},
		{"remainder rounds up", 101, 10, 11},
		{"single partial page", 3, 10, 1},
		{"page size one", 7, 1, 7},
		{"zero page size", 50, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TotalPages(tc.total, tc.pageSize); got != tc.want {
				t.Fatalf("TotalPages(%d, %d) = %d, want %d", tc.total, tc.pageSize, got, tc.want)
			}
		})
	}
}

// The last page always holds total - (pages-1)*pageSize items, between 1 and
// pageSize.
func TestTotalPagesLastPageBounds(t *testing.T) {
	for total := int64(1); total <= 250; total++ {
		for _, pageSize := range []int{1, 7, 10, 100} {
			pages := TotalPages(total, pageSize)
			last := total - (pages-1)*int64(pageSize)
			if last < 1 || last > int64(pageSize) {
				t.Fatalf("total=%d pageSize=%d: last page holds %d items", total, pageSize, last)
			}
		}
	}
}

func TestPageRequestNormalize(t *testing.T) {
	cases := []struct {
		name         string
		in           PageRequest
		wantPage     int
		wantPageSize int
		wantSort     string
	}{
		{"defaults", PageRequest{}, 1, DefaultPageSize, SortAsc},
		{"negative page", PageRequest{Page: -3, PageSize: 20}, 1, 20, SortAsc},
		{"oversized page size clamps", PageRequest{Page: 2, PageSize: 5000}, 2, MaxPageSize, SortAsc},
		{"desc kept", PageRequest{Page: 1, PageSize: 10, SortType: SortDesc}, 1, 10, SortDesc},
		{"unknown sort falls back", PageRequest{SortType: "sideways"}, 1, DefaultPageSize, SortAsc},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.Normalize()
			if tc.in.Page != tc.wantPage || tc.in.PageSize != tc.wantPageSize || tc.in.SortType != tc.wantSort {
				t.Fatalf("got page=%d size=%d sort=%q, want page=%d size=%d sort=%q",
					tc.in.Page, tc.in.PageSize, tc.in.SortType, tc.wantPage, tc.wantPageSize, tc.wantSort)
			}
		})
	}
}

func TestNewPageResultNeverNilResults(t *testing.T) {
	res := NewPageResult[int](0, 10, nil)
	if res.Results == nil {
		t.Fatal("Results must serialize as [], not null")
	}
}
