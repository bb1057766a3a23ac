package scraper

// X.com DOM selectors. X changes its markup often; update these when
// parsing breaks.
const (
	PrimaryColumn = `[data-testid="primaryColumn"]`
	Cell          = `div[data-testid="cellInnerDiv"]`
	TweetArticle  = `article[data-testid="tweet"]`

	TweetText    = `div[data-testid="tweetText"]`
	TweetAuthor  = `div[data-testid="User-Name"]`
	StatusLink   = `a[href*="/status/"]`
	Timestamp    = `time[datetime]`
	QuoteFrame   = `div[role="link"]`
	ActionGroup  = `div[role="group"]`
	ActionButton = `div[role="group"] button[data-testid]`
	MetricsGroup = `div[role="group"][aria-label]`

	Photo       = `div[data-testid="tweetPhoto"] img[src*="twimg.com/media"]`
	CardImage   = `img[src*="twimg.com/card_img"]`
	VideoPoster = `video[poster]`

	UserCell        = `button[data-testid="UserCell"], div[data-testid="UserCell"]`
	UserDescription = `div[data-testid="UserDescription"]`
	UserName        = `div[data-testid="UserName"]`
)

// Text markers, Japanese first since the browser requests ja-JP.
var (
	quoteMarkers       = []string{"引用", "Quote"}
	replyPrefixes      = []string{"返信先:", "Replying to"}
	discoverMoreLabels = []string{"もっと見つける", "Discover more"}
	pageErrorMarkers   = []string{"このページは存在しません", "Something went wrong", "Hmm...this page doesn't exist"}
)
