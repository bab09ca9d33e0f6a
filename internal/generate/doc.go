// Package generate implements autoregressive inference for the
// translation model.
//
// Greedy decoding runs as a small state machine:
//
//	INIT  encode the source once and start every row with SOS
//	STEP  decode the current prefix, take the arg-max of the last
//	      position and append it (PAD for rows that already emitted EOS)
//	DONE  every row has emitted EOS or the prefix reached MaxLength
//
// No sampling and no backtracking: each step keeps only the single
// highest-scoring token.
package generate
