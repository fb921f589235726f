package common

func Filter[T any](slice []T, f func(T) bool) []T {
	result := []T{}
	for _, item := range slice {
		if f(item) {
			result = append(result, item)
		}
	}
	return result
}

// Paginate returns the window of slice selected by limit and offset.
func Paginate[T any](slice []T, limit, offset int) []T {
	if offset >= len(slice) {
		return []T{}
	}

	end := len(slice)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	return slice[offset:end]
}
