// Package pconv runs the inpainting model behind a small, fixed call
// contract.
//
// The pipeline hands the adapter a normalized masked image and its mask,
// both shaped (3, H, W). The adapter adds the batch axis, runs one forward
// pass through a Model and strips the batch axis from the (1, 3, H, W)
// prediction. Inference never mutates model parameters.
//
//   - Atoms: bundle codec (DecodeBundle, EncodeBundle), CheckParams,
//     checksum helpers
//   - Molecules: PartialConvFill (reference Model), LoadModel
//   - Organism: Runner, a single-slot executor guarding the model
//
// # Model bundles
//
// Parameters are stored in the safetensors layout: an 8-byte little-endian
// header length, a JSON header describing every tensor, then raw
// little-endian F32 data. All learnable weights live under the "model"
// entry, i.e. keys of the form "model.<param>". The optional
// "__metadata__" map carries the architecture name.
//
// Loading a bundle whose parameters do not match the declared Architecture
// (missing, unexpected or mis-shaped entries) fails with ErrBundleMismatch.
// Callers treat that as a fatal startup error.
//
// # Quick Start
//
//	model, err := pconv.LoadModel("model/irr_model_e0_i500.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	runner, err := pconv.NewRunner(model)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer runner.Close()
//
//	prediction, err := runner.Infer(ctx, masked, mask)
//
// # Reference backend
//
// PartialConvFill is a pure-Go partial convolution: each pass fills every
// unknown pixel that has a known neighbour with the mask-weighted average of
// its 3x3 window and marks it known. It stands in for a trained network so
// the whole pipeline runs without an external runtime. Other backends only
// need to implement Model.
package pconv
