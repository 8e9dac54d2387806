// Package generic implements sources.Adapter for general HTML comic sites.
// Gallery handles pages that list every image on one index page; Linked
// handles sites that chain pages together with a "next" link. Both extract
// images with configurable CSS selectors and attribute fallbacks.
package generic
