package history

import "fmt"

// Schedule lists the blocks to value in [from, to]: every step blocks from
// from, plus to itself when the stride does not land on it.
func Schedule(from, to, step uint64) ([]uint64, error) {
	if step == 0 {
		return nil, fmt.Errorf("step must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	blocks := make([]uint64, 0, (to-from)/step+2)
	for block := from; block <= to; block += step {
		blocks = append(blocks, block)
		if to-block < step {
			break
		}
	}
	if blocks[len(blocks)-1] != to {
		blocks = append(blocks, to)
	}
	return blocks, nil
}

// After drops the blocks at or below last.
func After(blocks []uint64, last uint64) []uint64 {
	for i, block := range blocks {
		if block > last {
			return blocks[i:]
		}
	}
	return nil
}
