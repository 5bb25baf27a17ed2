// Package gpu implements the GPU half of the batched compositor on top of
// gogpu/wgpu: the texture-array atlas, the batched render pipeline, and the
// indirect renderer that turns a packed frame into a single submission.
//
// The package is internal; applications use the facade in
// github.com/gogpu/uibatch/gpu instead.
//
// Build with the "nogpu" tag to strip all GPU code, leaving only the
// CPU-side batching in the root package.
package gpu
