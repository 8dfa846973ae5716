// This file contains the filters used to select a subset of a membership,
// for instance the threshold of cohort members contacted for an unsealing.

package mino

import (
	"sort"
)

// Filter is a set of parameters for the Players.Take function.
type Filter struct {
	// Indices lists the indexes to include. It stays sorted as updaters are
	// applied.
	Indices []int
}

// FilterUpdater is a function to update the filters.
type FilterUpdater func(*Filter)

// ApplyFilters applies the updaters and returns the result.
func ApplyFilters(updaters []FilterUpdater) *Filter {
	filters := &Filter{
		Indices: []int{},
	}

	for _, updater := range updaters {
		updater(filters)
	}

	return filters
}

// IndexFilter is a filter to include a given index.
func IndexFilter(index int) FilterUpdater {
	return func(filters *Filter) {
		arr := filters.Indices
		i := sort.IntSlice(arr).Search(index)

		if i < len(arr) && arr[i] == index {
			return
		}

		filters.Indices = append(arr, index)
		sort.Ints(filters.Indices)
	}
}

// RangeFilter is a filter to include a range of indices.
func RangeFilter(start, end int) FilterUpdater {
	return func(filters *Filter) {
		arr := filters.Indices
		queue := []int{}

		for i := start; i < end; i++ {
			k := sort.IntSlice(arr).Search(i)
			if k >= len(arr) || arr[k] != i {
				queue = append(queue, i)
			}
		}

		filters.Indices = append(arr, queue...)
		sort.Ints(filters.Indices)
	}
}
