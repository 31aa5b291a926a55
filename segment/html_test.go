package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "headings and paragraphs",
			html: "<h1>Hello</h1><p>World</p>",
			want: "Hello World",
		},
		{
			name: "script style and noscript are dropped",
			html: `<html><head><style>p { color: red; }</style><script>var x = "hidden";</script></head>
<body><noscript>enable javascript</noscript><p>Visible</p><script type="module">import x from "y"</script></body></html>`,
			want: "Visible",
		},
		{
			name: "entities are decoded",
			html: "<p>a&nbsp;b &amp; &lt;tag&gt; &quot;q&quot; &#39;s&#x27; 1&#x2F;2</p>",
			want: `a b & <tag> "q" 's' 1/2`,
		},
		{
			name: "whitespace collapses",
			html: "<div>\n\n   lots\n\tof   \r\n space  </div>",
			want: "lots of space",
		},
		{
			name: "adjacent inline elements stay separated",
			html: "<b>one</b><i>two</i>",
			want: "one two",
		},
		{
			name: "plain text passes through",
			html: "just some text",
			want: "just some text",
		},
		{
			name: "empty document",
			html: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractText_FeedsSegmenter(t *testing.T) {
	body := strings.Repeat("<p>Go makes concurrent code readable. Channels connect goroutines.</p>", 40)
	text, err := ExtractText("<html><body>" + body + "</body></html>")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(text), MinTextLength)
	assert.NotContains(t, text, "<p>")

	chunks, err := Segment(text, 1000, 150)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
}
