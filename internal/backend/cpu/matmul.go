package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/seq2seq/internal/parallel"
	"github.com/born-ml/seq2seq/internal/tensor"
)

// MatMul performs matrix multiplication: (M, K) @ (K, N) -> (M, N).
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := tensor.MustRaw(tensor.Shape{m, n}, tensor.Float32, cpu.device)
	gemm(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	return result
}

// BatchMatMul multiplies the trailing matrices of two tensors that share
// their leading batch dimensions.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	nd := len(aShape)
	if nd < 3 || len(bShape) != nd {
		panic(fmt.Sprintf("batchmatmul: need matching rank >= 3, got %v and %v", aShape, bShape))
	}
	if !aShape[:nd-2].Equal(bShape[:nd-2]) {
		panic(fmt.Sprintf("batchmatmul: batch dimensions differ: %v vs %v", aShape, bShape))
	}

	m, k := aShape[nd-2], aShape[nd-1]
	if bShape[nd-2] != k {
		panic(fmt.Sprintf("batchmatmul: inner dimensions differ: %v @ %v", aShape, bShape))
	}
	n := bShape[nd-1]

	outShape := append(aShape[:nd-2].Clone(), m, n)
	result := tensor.MustRaw(outShape, tensor.Float32, cpu.device)

	out, aData, bData := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()
	batch := aShape[:nd-2].NumElements()

	cfg := cpu.parallel
	cfg.MinChunkSize = 1
	parallel.For(batch, func(i int) {
		gemm(out[i*m*n:(i+1)*m*n], aData[i*m*k:(i+1)*m*k], bData[i*k*n:(i+1)*k*n], m, k, n)
	}, cfg)

	return result
}

// gemm computes c = a @ b for row-major float32 matrices via SGEMM.
func gemm(c, a, b []float32, m, k, n int) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: m, Cols: k, Stride: k, Data: a},
		blas32.General{Rows: k, Cols: n, Stride: n, Data: b},
		0,
		blas32.General{Rows: m, Cols: n, Stride: n, Data: c},
	)
}
