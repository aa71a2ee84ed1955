// Package webfetch downloads web pages and converts them to Markdown so that
// research capabilities can quote source material in model prompts. Partial
// URLs are normalized to https, redirects are followed, and bodies are capped
// at [MaxBodySize].
package webfetch
