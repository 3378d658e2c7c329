package assistant

// systemPrompt - минимальная инструкция для модели: только формат ответа
const systemPrompt = `You manage the stock of a pizzeria. Reply with one JSON object and nothing else.
Fields: action (create|edit|entry|delete|restore|list|query|import|export), entity (ingredient|recipe),
name, unit (kg|g|L|ml|un), quantity, min_stock, recipe_type (pizza|esfiha), price,
field (stock|min_stock|cost|price|unit|category|name), value, low_only, topic, subject, answer, format (xlsx|csv).
For questions use action "query" and put a short answer in "answer" using the current stock below.`
