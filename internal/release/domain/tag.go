package domain

import "strings"

// FormatTag renders a release tag from a template containing {name} and
// {version} placeholders, e.g. "{name}-v{version}". It performs plain
// substitution and is total for any string inputs; validating the
// version format is the caller's concern. The same tag is used both to
// name new releases and as the lookup key when checking whether a
// release already exists.
func FormatTag(template, name, version string) string {
	tag := strings.ReplaceAll(template, "{name}", name)
	return strings.ReplaceAll(tag, "{version}", version)
}
