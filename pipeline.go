package particle

import "sync"

// task calls fn(i) for every i in [0, count), split in contiguous chunks between
// workersCount goroutines. It returns once every chunk is done. fn must only
// write state owned by index i.
func task(workersCount, count int, fn func(i int)) {
	if workersCount <= 1 || count <= 1 {
		for i := 0; i < count; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	workersCount = min(workersCount, count)
	chunkSize := (count + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		start, end := workerID*chunkSize, min((workerID+1)*chunkSize, count)
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}
