package tile

import (
	"errors"
	"iter"
)

var errVisitCancelled = errors.New("visit cancelled")

// IterTiles returns an iterator over all tiles of a Visitor.
// Iteration panics on visitor errors.
func IterTiles(r Visitor) iter.Seq2[ID, []byte] {
	return func(yield func(ID, []byte) bool) {
		err := r.VisitTiles(func(tileID ID, tileData []byte) error {
			if !yield(tileID, tileData) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}

// Copy writes every tile of src to dst and finalizes dst.
func Copy(dst Writer, src Visitor) (int, error) {
	count := 0
	err := src.VisitTiles(func(tileID ID, tileData []byte) error {
		if err := dst.WriteTile(tileID, tileData); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, dst.Finalize()
}
