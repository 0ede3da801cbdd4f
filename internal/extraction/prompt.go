package extraction

// buildPrompt returns the fixed instructions sent alongside every schedule image
func buildPrompt() string {
	return `Analyze the provided image of a course schedule and extract the course details into a structured list.

The image likely contains Chinese text. Follow these specific extraction rules carefully:

1. **Student Name** (学生姓名): Typically found at the beginning of a course line or block.
2. **Course Name** (课程名称): Identify the subject or activity. It is often found after a duration marker like "minutes" or "mins" (e.g., look for "分钟", "30分钟 钢琴课" -> "钢琴课").
3. **Teacher Name** (老师姓名): Usually enclosed in parentheses or brackets (e.g., "(王老师)" -> "王老师").
4. **Course Date** (上课日期): Extract dates from section headers, calendar titles, or specific date lines near the course. Format as YYYY-MM-DD if possible, otherwise keep original text.
5. **Course Time** (上课时间): Extract the time range in the format "Start Time - End Time" (e.g., "14:00 - 15:00").

If a field is missing, leave it as an empty string. Return a clean JSON array.`
}
