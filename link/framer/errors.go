package framer

import (
	"fmt"

	"github.com/ValentinKolb/rlink/link/common"
)

// overflowError reports how many buffered bytes were discarded
type overflowError struct {
	dropped int
	limit   int
}

func (e *overflowError) Error() string {
	return fmt.Sprintf("%v: dropped %d buffered bytes (limit %d)", common.ErrFrameTooLarge, e.dropped, e.limit)
}

func (e *overflowError) Unwrap() error {
	return common.ErrFrameTooLarge
}
