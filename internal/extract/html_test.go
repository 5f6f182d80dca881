package extract

import (
	"errors"
	"testing"
	"time"
)

func TestTitleDropsChrome(t *testing.T) {
	markup := `<span class="inlineContextMenu">打开</span>` +
		`<span class="announcementType">课程公告</span>` +
		`  期中考试安排  ` +
		`<span class="announcementPosted">发帖者: 张老师</span>`

	if got := (HTML{}).Title(markup); got != "期中考试安排" {
		t.Fatalf("Title() = %q", got)
	}
}

func TestBodyKeepsLineBreaks(t *testing.T) {
	markup := `<div><p>第一段</p><p> 第二段<br>继续 </p></div>`
	want := "第一段\n第二段\n继续"
	if got := (HTML{}).Body(markup); got != want {
		t.Fatalf("Body() = %q, want %q", got, want)
	}
}

func TestSubmitted(t *testing.T) {
	cases := []struct {
		name string
		page string
		want bool
	}{
		{"attempted", `<html><head><title>复查提交历史记录: 作业一</title></head><body></body></html>`, true},
		{"not attempted", `<html><head><title>上传作业: 作业一</title></head><body></body></html>`, false},
		{"leading whitespace", "<html><head><title>\n  复查提交历史记录</title></head></html>", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := (HTML{}).Submitted(tc.page)
			if err != nil {
				t.Fatalf("Submitted: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Submitted() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSubmittedWithoutTitle(t *testing.T) {
	_, err := (HTML{}).Submitted(`<html><body>login required</body></html>`)
	if !errors.Is(err, ErrNoTitle) {
		t.Fatalf("expected ErrNoTitle, got %v", err)
	}
}

func TestInstruction(t *testing.T) {
	page := `<html><body>
<div id="instructions"><div class="vtbegenerated"><p>完成第三章习题</p><p>提交 PDF</p></div></div>
</body></html>`
	if got := (HTML{}).Instruction(page); got != "完成第三章习题\n提交 PDF" {
		t.Fatalf("Instruction() = %q", got)
	}

	fallback := `<div class="vtbegenerated">只有正文</div>`
	if got := (HTML{}).Instruction(fallback); got != "只有正文" {
		t.Fatalf("Instruction() fallback = %q", got)
	}

	if got := (HTML{}).Instruction(`<p>nothing here</p>`); got != "" {
		t.Fatalf("Instruction() on page without instructions = %q", got)
	}
}

func TestStripSemester(t *testing.T) {
	cases := map[string]string{
		"操作系统(24-25学年第1学期)":       "操作系统",
		"Linear Algebra (A)(Fall 2024)": "Linear Algebra (A)",
		"个人":                          "个人",
		"":                            "",
	}
	for in, want := range cases {
		if got := StripSemester(in); got != want {
			t.Errorf("StripSemester(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTimestamps(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	if got := FormatMillis(1729180800000, loc); got != "2024-10-18 00:00:00" {
		t.Fatalf("FormatMillis = %q", got)
	}

	got, err := FormatTimestamp("2024-10-20T15:59:00.000Z", loc)
	if err != nil || got != "2024-10-20 23:59:00" {
		t.Fatalf("FormatTimestamp(zoned) = %q, %v", got, err)
	}

	naive, err := ParseTimestamp("2024-10-20T23:59:00", loc)
	if err != nil {
		t.Fatalf("ParseTimestamp(naive): %v", err)
	}
	if naive.UTC().Format(time.RFC3339) != "2024-10-20T15:59:00Z" {
		t.Fatalf("naive timestamp not read in loc: %v", naive.UTC())
	}

	if _, err := ParseTimestamp("next tuesday", loc); err == nil {
		t.Fatal("expected error for garbage timestamp")
	}
}
