package analysis

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func issueTypes(issues []Issue) []string {
	types := make([]string, 0, len(issues))
	for _, issue := range issues {
		types = append(types, issue.Type)
	}
	return types
}

func TestDetectIssues(t *testing.T) {
	Convey("Given a SELECT * statement", t, func() {
		issues := DetectIssues("SELECT * FROM users WHERE id = 1")
		So(issueTypes(issues), ShouldContain, "select_star")
	})

	Convey("Given a DELETE without WHERE", t, func() {
		issues := DetectIssues("DELETE FROM sessions")

		So(issueTypes(issues), ShouldContain, "missing_where")
		Convey("And the severity is high", func() {
			for _, issue := range issues {
				if issue.Type == "missing_where" {
					So(issue.Severity, ShouldEqual, "high")
				}
			}
		})
	})

	Convey("Given an UPDATE with a WHERE clause", t, func() {
		issues := DetectIssues("UPDATE users SET active = false WHERE id = 1")
		So(issueTypes(issues), ShouldNotContain, "missing_where")
	})

	Convey("Given a statement with a subquery", t, func() {
		issues := DetectIssues("SELECT id FROM users WHERE id IN (SELECT user_id FROM orders WHERE total > 10)")
		So(issueTypes(issues), ShouldContain, "multiple_selects")
	})

	Convey("Given an ORDER BY without LIMIT", t, func() {
		issues := DetectIssues("SELECT id FROM events WHERE kind = 'click' ORDER BY created_at DESC")
		So(issueTypes(issues), ShouldContain, "order_by_no_limit")
	})

	Convey("Given an ORDER BY with LIMIT", t, func() {
		issues := DetectIssues("SELECT id FROM events ORDER BY created_at DESC LIMIT 10")
		So(issueTypes(issues), ShouldNotContain, "order_by_no_limit")
	})

	Convey("Given a leading-wildcard LIKE", t, func() {
		issues := DetectIssues("SELECT id FROM users WHERE name LIKE '%son' AND id > 0")
		So(issueTypes(issues), ShouldContain, "leading_wildcard")
	})

	Convey("Given a clean statement", t, func() {
		issues := DetectIssues("SELECT id, name FROM users WHERE id = 1")
		So(issues, ShouldBeEmpty)
	})
}
