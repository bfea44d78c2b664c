// Package access decides who may view a content item or bundle.
//
// # Resolution order
//
// Resolver.Resolve evaluates the access paths from most to least privileged
// and stops at the first match:
//
//  1. workflow gate: without VIEW_ALL_CONTENT the item must be published,
//     active and inside its availability window
//  2. privileged viewers (VIEW_ALL_CONTENT) and the item's creator
//  3. the public flag
//  4. a direct grant to the requester
//  5. a grant to the requester's role
//  6. a grant to a group the requester belongs to
//  7. the item's viewing password. A signed-in requester who supplies it
//     gets a permanent direct grant that cannot be re-shared.
//  8. anonymous requesters are asked to sign in
//  9. everyone else is denied
//
// Grants on a bundle count for every item in the bundle. A grant whose
// ExpiresAt is not strictly after the resolution time is ignored but never
// deleted. The time is read once per resolution.
//
// A denied outcome is a Decision, not an error. Errors are reserved for
// malformed ids, missing content and storage failures.
package access
