// Package markup rewrites HTML before it reaches the rendering engine: font-size keyword
// normalization, image inlining and header/footer template composition.
package markup
