package openai

const ChatURL = "https://api.openai.com/v1/chat/completions"
