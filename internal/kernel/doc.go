// Package kernel evaluates the sampling kernels of the two blur variants:
// sampled-Gaussian weight tables and the fixed Kawase dual-filter stencils.
//
// Everything here is pure. Tables are cached by kernel size.
package kernel
