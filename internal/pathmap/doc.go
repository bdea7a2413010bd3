// Package pathmap maps URLs to on-disk paths inside a mirror and computes the
// relative link text between two mapped paths.
//
// Layout:
//
//	https://example.com/             -> example.com/index.html
//	https://example.com/docs/        -> example.com/docs/index.html
//	https://example.com/docs         -> example.com/docs/index.html
//	https://example.com/a/logo.png   -> example.com/a/logo.png
//	https://example.com/list?page=2  -> example.com/list/index@page=2.html
//	https://example.com/s.css?v=3    -> example.com/s@v=3.css
//
// Any path component longer than MaxNameLength bytes is replaced by the
// hex SHA3-256 of the component, keeping a short extension when it has one.
package pathmap
