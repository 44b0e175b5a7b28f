package suggest

import (
	"sort"
	"strings"
)

// Topic 表示一轮对话的主题，决定推荐的快捷回复。
type Topic string

const (
	General     Topic = "general"
	Greeting    Topic = "greeting"
	Travel      Topic = "travel"
	Destination Topic = "destination"
	Schedule    Topic = "schedule"
	Lodging     Topic = "lodging"
	Support     Topic = "support"
	Billing     Topic = "billing"
	Drinks      Topic = "drinks"
	Thanks      Topic = "thanks"
)

// Decision 给出主题识别结果以及推荐回复。
type Decision struct {
	Topic       Topic
	Score       int
	Subject     string
	Suggestions []string
}

var keywordBuckets = map[Topic][]string{
	Greeting:    {"hello", "hi", "hey", "good morning", "good evening", "你好"},
	Travel:      {"flight", "fly", "plane", "train", "trip", "travel", "ticket", "book", "journey", "机票", "火车"},
	Destination: {"paris", "tokyo", "new york", "london", "rome", "berlin", "beijing", "shanghai"},
	Schedule:    {"tomorrow", "today", "tonight", "weekend", "next week", "monday", "friday", "morning", "evening"},
	Lodging:     {"hotel", "room", "stay", "night", "hostel", "check in", "check-in", "酒店"},
	Support:     {"broken", "error", "crash", "password", "login", "log in", "reset", "doesn't work", "not working", "bug"},
	Billing:     {"invoice", "refund", "charge", "payment", "bill", "subscription", "price"},
	Drinks:      {"coffee", "latte", "espresso", "tea", "cappuccino", "decaf", "pastry", "croissant"},
	Thanks:      {"thanks", "thank you", "great", "perfect", "awesome", "谢谢"},
}

// followUps 按展示顺序列出各主题之后推荐的回复。
var followUps = map[Topic][]string{
	General:     {"Tell me more", "Start over"},
	Greeting:    {"Book a flight", "Find a hotel", "I need help"},
	Travel:      {"Paris", "Tokyo", "New York"},
	Destination: {"Tomorrow", "This weekend", "Next week"},
	Schedule:    {"Economy", "Business", "Find a hotel"},
	Lodging:     {"One night", "Two nights", "A week"},
	Support:     {"Reset my password", "Talk to a human"},
	Billing:     {"Request a refund", "Show my invoice"},
	Drinks:      {"Latte", "Espresso", "Green tea"},
	Thanks:      {"Start over", "That's all"},
}

// topicPriority 用于得分相同时的取舍，靠前的主题优先。
var topicPriority = []Topic{Destination, Schedule, Travel, Lodging, Billing, Support, Drinks, Thanks, Greeting}

// Analyze 根据用户话语与机器人回复推断推荐回复，最多返回 limit 条。
// 用户话语优先；若用户没有明显主题，则参考机器人回复。
func Analyze(userUtterance, botUtterance string, limit int) Decision {
	decision := scoreText(userUtterance)
	if decision.Score == 0 {
		decision = scoreText(botUtterance)
	}
	if decision.Score == 0 {
		decision = Decision{Topic: General}
	}

	decision.Suggestions = pick(decision.Topic, userUtterance, limit)
	return decision
}

// Classify 只返回用户话语的主题，不生成推荐。
func Classify(text string) Decision {
	return scoreText(text)
}

func scoreText(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Topic: General}
	}

	scores := make(map[Topic]int)
	subjects := make(map[Topic]string)
	for topic, keywords := range keywordBuckets {
		for _, word := range keywords {
			if !containsWord(normalized, word) {
				continue
			}
			scores[topic] += 3
			if prev, ok := subjects[topic]; !ok || len(word) > len(prev) {
				subjects[topic] = word
			}
		}
	}

	// 问句更像是在求助。
	if strings.HasSuffix(normalized, "?") && scores[Support] > 0 {
		scores[Support]++
	}

	best := Decision{Topic: General}
	for _, topic := range topicPriority {
		if s := scores[topic]; s > best.Score {
			best = Decision{Topic: topic, Score: s, Subject: subjects[topic]}
		}
	}
	return best
}

// containsWord 按整词匹配，"hi" 不会命中 "this"。
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if boundary(text, idx-1) && boundary(text, end) {
			return true
		}
		start = idx + 1
	}
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	isWord := c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '\''
	return !isWord
}

func pick(topic Topic, userUtterance string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	candidates := followUps[topic]
	out := make([]string, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		// 不推荐用户刚说过的话。
		if strings.EqualFold(c, strings.TrimSpace(userUtterance)) {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Topics 按顺序列出所有可能返回的主题。
func Topics() []Topic {
	topics := make([]Topic, 0, len(followUps))
	for t := range followUps {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i] < topics[j] })
	return topics
}
