// Package playlist maps progress events onto the items of a prefetched collection.
//
// Extractor output often omits or misreports which item an event belongs to. The
// [Reconciler] resolves the current item with an explicit ranked list of [Strategy]
// values, each of which either names an index or has no opinion:
//
//  1. [ExplicitIndex] trusts an in-range playlist index outright.
//  2. [TitleChange] treats a new title as the start of the next item.
//  3. [SameTitle] keeps the current item while the title repeats.
//  4. [TitleSearch] looks the title up among the stored item titles.
//  5. [Fallback] always answers: event index, current item, first pending item, then 0.
//
// Applying an event fills in item fields and marks the previous item downloaded when the
// pointer moves forward. The downloaded flag is never cleared.
package playlist
