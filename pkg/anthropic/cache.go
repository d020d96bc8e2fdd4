package anthropic

// BuildCachedSystemBlocks returns system content with a prompt-cache
// breakpoint. The per-industry AI impact loop sends the same system prompt
// for every industry, so all calls after the first read it from cache.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
