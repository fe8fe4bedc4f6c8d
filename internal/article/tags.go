package article

import "strings"

// NormalizeTags keeps the first occurrence of every non-empty tag, in input
// order. The result is never nil.
func NormalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result
}

// ParseTagList splits comma-separated input into trimmed, normalized tags.
func ParseTagList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return NormalizeTags(parts)
}

// UnionTags merges tag lists, keeping first-seen order.
func UnionTags(lists ...[]string) []string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	return NormalizeTags(all)
}

// ContainsFold reports whether substr is within s, optionally ignoring case.
func ContainsFold(s, substr string, ignoreCase bool) bool {
	if ignoreCase {
		return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
	}
	return strings.Contains(s, substr)
}

// AnyTagContains reports whether at least one tag contains keyword.
func AnyTagContains(tags []string, keyword string, ignoreCase bool) bool {
	for _, tag := range tags {
		if ContainsFold(tag, keyword, ignoreCase) {
			return true
		}
	}
	return false
}
