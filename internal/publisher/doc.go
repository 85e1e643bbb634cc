// Package publisher turns purchased chapters into pastes. Chapters are
// grouped per book into maximal runs of consecutive indices, one upload per
// run; failed uploads stay tracked and are resubmitted until they succeed.
package publisher
