// Package search answers multi-attribute queries across the children
// of many containers at once.
//
// The index keeps one denormalized Entry per indexed child in a
// primary arena and maintains five inverted secondary indices over it:
// kind, lowercase name, owning container, keyword token and declared
// dependency key. Secondaries are roaring bitmaps over arena ids, so a
// conjunctive filter is a handful of bitmap intersections followed by
// a scalar scan of the few survivors.
//
// Entries are independent copies of their source objects. Evicting a
// container from the cache does not touch the index; callers retract
// containers explicitly, which removes their entries from the arena
// and every secondary atomically.
package search
