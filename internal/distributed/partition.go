// Package distributed splits a load test across remote workers.
package distributed

// Partition splits n requests over the given number of workers. The first
// n%workers workers get one extra request; the sizes always sum to n.
func Partition(n, workers int) []int {
	if workers <= 0 {
		return nil
	}
	if n < 0 {
		n = 0
	}

	sizes := make([]int, workers)
	for i := range sizes {
		sizes[i] = n / workers
		if i < n%workers {
			sizes[i]++
		}
	}
	return sizes
}
