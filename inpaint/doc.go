// Package inpaint runs the interactive inpainting cycle.
//
// A Session owns the working image and the stroke accumulator. Each cycle
// generates a mask, normalizes the working image, hides the unknown pixels,
// asks the model for a prediction, composites the prediction under the
// known pixels, and writes the denormalized result back as the new working
// image:
//
//	Idle -> Drawing -> Inpainting -> Idle
//
// The stroke path is cleared whenever a cycle completes.
package inpaint
