package images

import (
	"crypto/md5"
	"fmt"

	"gocv.io/x/gocv"
)

// ComputeMatChecksum generates a deterministic checksum of the pixel payload.
// Passthrough paths are verified by comparing checksums of input and output.
//
// Example:
//
//	if ComputeMatChecksum(out) == ComputeMatChecksum(generated) {
//		// untouched
//	}
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	if !mat.IsContinuous() {
		mat = mat.Clone()
		defer mat.Close()
	}

	hash := md5.New()
	fmt.Fprintf(hash, "%dx%dx%d:", mat.Cols(), mat.Rows(), mat.Channels())
	hash.Write(mat.ToBytes())
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// SameSize reports whether two Mats have identical rows and cols.
func SameSize(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols()
}
